package repository

import (
	"gorm.io/gorm"
)

// applyUpdates runs a partial update of the row with id and reports whether
// the row exists. A "tags" entry is written with a struct update because
// gorm only runs field serializers there.
func applyUpdates(db *gorm.DB, model interface{}, id string, updates map[string]interface{}, withTags func([]string) interface{}) (bool, error) {
	cols := make(map[string]interface{}, len(updates))
	var tags []string
	hasTags := false
	for k, v := range updates {
		if t, ok := v.([]string); ok && k == "tags" {
			tags, hasTags = t, true
			continue
		}
		cols[k] = v
	}

	found := false
	err := db.Transaction(func(tx *gorm.DB) error {
		if len(cols) > 0 {
			res := tx.Model(model).Where("id = ?", id).Updates(cols)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			found = true
		}
		if hasTags {
			res := tx.Model(model).Where("id = ?", id).Select("tags").Updates(withTags(tags))
			if res.Error != nil {
				return res.Error
			}
			found = res.RowsAffected > 0
		}
		return nil
	})
	return found, err
}
