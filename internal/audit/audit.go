package audit

import (
	"encoding/json"
	"time"

	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogAction records an audit log entry
func LogAction(db *gorm.DB, userID uuid.UUID, action, resource string, details interface{}) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	log := models.AuditLog{
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now(),
	}

	return db.Create(&log).Error
}

// Recent returns the newest audit entries first.
func Recent(db *gorm.DB, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.AuditLog
	err := db.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// Audit actions constants
const (
	ActionRegisterUser   = "register_user"
	ActionActivateUser   = "activate_user"
	ActionCreateAdmin    = "create_admin"
	ActionAssignRole     = "assign_role"
	ActionCreateRole     = "create_role"
	ActionCreateCategory = "create_category"
	ActionUpdateCategory = "update_category"
	ActionDeleteCategory = "delete_category"
	ActionCreateEvent    = "create_event"
	ActionUpdateEvent    = "update_event"
	ActionDeleteEvent    = "delete_event"
	ActionLogin          = "login"
	ActionLoginFailed    = "login_failed"
)
