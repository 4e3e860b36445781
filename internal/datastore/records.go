package datastore

import (
	"github.com/huelab/huelab-go/internal/errors"
	"github.com/huelab/huelab-go/internal/labeling"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// dbError wraps a gorm error with datastore metadata.
func dbError(err error, operation string) error {
	category := errors.CategoryDatabase
	if errors.Is(err, gorm.ErrRecordNotFound) {
		category = errors.CategoryNotFound
	}
	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Build()
}

// Save upserts a record and replaces its alternatives as a single
// transaction.
func (ds *DataStore) Save(record *labeling.Record) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		alternatives := record.Alternatives
		record.Alternatives = nil
		defer func() { record.Alternatives = alternatives }()

		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
			return dbError(err, "save_record")
		}
		if err := tx.Where("record_id = ?", record.ID).Delete(&labeling.Alternative{}).Error; err != nil {
			return dbError(err, "clear_alternatives")
		}
		for i := range alternatives {
			alternatives[i].ID = 0
			alternatives[i].RecordID = record.ID
			if err := tx.Create(&alternatives[i]).Error; err != nil {
				return dbError(err, "save_alternative")
			}
		}
		return nil
	})
}

// Get retrieves a record with its alternatives by ID.
func (ds *DataStore) Get(id string) (labeling.Record, error) {
	var record labeling.Record
	if err := ds.DB.Preload("Alternatives").First(&record, "id = ?", id).Error; err != nil {
		return labeling.Record{}, dbError(err, "get_record")
	}
	return record, nil
}

// Delete removes a record and cascades to its alternatives.
func (ds *DataStore) Delete(id string) error {
	return ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("record_id = ?", id).Delete(&labeling.Alternative{}).Error; err != nil {
			return dbError(err, "delete_alternatives")
		}
		result := tx.Delete(&labeling.Record{}, "id = ?", id)
		if result.Error != nil {
			return dbError(result.Error, "delete_record")
		}
		if result.RowsAffected == 0 {
			return dbError(gorm.ErrRecordNotFound, "delete_record")
		}
		return nil
	})
}

// GetAllRecords retrieves every record, newest first.
func (ds *DataStore) GetAllRecords() ([]labeling.Record, error) {
	var records []labeling.Record
	if err := ds.DB.Preload("Alternatives").Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, dbError(err, "get_all_records")
	}
	return records, nil
}

// applyFilter builds the WHERE clause for a RecordFilter.
func applyFilter(query *gorm.DB, filter *RecordFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Season != "" {
		// Effective season: confirmed when present, otherwise predicted.
		query = query.Where("COALESCE(confirmed_season, predicted_season) = ?", string(filter.Season))
	}
	if filter.Source != "" {
		query = query.Where("source = ?", filter.Source)
	}
	return query
}

// SearchRecords retrieves records matching the filter plus the total count
// before pagination.
func (ds *DataStore) SearchRecords(filter RecordFilter) ([]labeling.Record, int64, error) {
	var total int64
	if err := applyFilter(ds.DB.Model(&labeling.Record{}), &filter).Count(&total).Error; err != nil {
		return nil, 0, dbError(err, "count_records")
	}

	query := applyFilter(ds.DB.Preload("Alternatives"), &filter).Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []labeling.Record
	if err := query.Find(&records).Error; err != nil {
		return nil, 0, dbError(err, "search_records")
	}
	return records, total, nil
}

// GetConfirmedRecords retrieves all records carrying human ground truth.
func (ds *DataStore) GetConfirmedRecords() ([]labeling.Record, error) {
	var records []labeling.Record
	err := ds.DB.Preload("Alternatives").
		Where("status IN ?", []labeling.Status{
			labeling.StatusManuallyLabeled,
			labeling.StatusExpertVerified,
			labeling.StatusNechamaVerified,
		}).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, "get_confirmed_records")
	}
	return records, nil
}

// GetRecordsWithFeatures retrieves all records the AI has described,
// confirmed or not.
func (ds *DataStore) GetRecordsWithFeatures() ([]labeling.Record, error) {
	var records []labeling.Record
	err := ds.DB.Preload("Alternatives").
		Where("extracted_features IS NOT NULL").
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, dbError(err, "get_records_with_features")
	}
	return records, nil
}

// CountByStatus returns the number of records in each workflow status.
func (ds *DataStore) CountByStatus() (map[labeling.Status]int64, error) {
	var rows []struct {
		Status labeling.Status
		Count  int64
	}
	err := ds.DB.Model(&labeling.Record{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err, "count_by_status")
	}

	counts := make(map[labeling.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
