package conf

import (
	"github.com/spf13/viper"
)

// setDefaultConfig sets the default values for each configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "HueLab")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "huelab.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "huelab.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "huelab")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "huelab")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("classifier.endpoint", "http://localhost:9090/v1/classify")
	viper.SetDefault("classifier.apikey", "")
	viper.SetDefault("classifier.timeout", 60)

	viper.SetDefault("review.autoconfirmthreshold", 80.0)
	viper.SetDefault("review.reviewthreshold", 50.0)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
