package database

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"gorm.io/gorm"
)

// WatchedTables are the tables whose inserts and updates land in db_changes.
var WatchedTables = []string{"stocks", "wholesaler_stocks"}

type triggerInfo struct {
	Name  string
	Table string
}

// ExecuteTriggers (re)creates the change triggers for the current dialect.
// It is safe to run on every start.
func ExecuteTriggers(db *gorm.DB) error {
	dialect := db.Dialector.Name()
	if dialect != "mysql" && dialect != "sqlite" {
		return fmt.Errorf("change triggers are not supported on %s", dialect)
	}

	for _, table := range WatchedTables {
		for _, action := range []string{models.ChangeInsert, models.ChangeUpdate} {
			name := triggerName(table, action)
			if err := db.Exec("DROP TRIGGER IF EXISTS " + name).Error; err != nil {
				return fmt.Errorf("drop trigger %s: %w", name, err)
			}
			if err := db.Exec(createTriggerSQL(dialect, name, table, action)).Error; err != nil {
				return fmt.Errorf("create trigger %s: %w", name, err)
			}
		}
	}

	triggers, err := listTriggers(db, dialect)
	if err != nil {
		return err
	}
	for _, t := range triggers {
		utils.InfoLogger.WithFields(logrus.Fields{"trigger": t.Name, "table": t.Table}).Debug("trigger verified")
	}
	if want := len(WatchedTables) * 2; len(triggers) < want {
		return fmt.Errorf("expected %d change triggers, found %d", want, len(triggers))
	}
	utils.InfoLogger.WithField("count", len(triggers)).Info("change triggers installed")
	return nil
}

func triggerName(table, action string) string {
	return fmt.Sprintf("trg_%s_after_%s", table, strings.ToLower(action))
}

func createTriggerSQL(dialect, name, table, action string) string {
	if dialect == "mysql" {
		return fmt.Sprintf(`CREATE TRIGGER %s AFTER %s ON %s FOR EACH ROW
INSERT INTO db_changes (table_name, record_id, action_type, changed_at, processed)
VALUES ('%s', NEW.id, '%s', NOW(), false)`, name, action, table, table, action)
	}
	return fmt.Sprintf(`CREATE TRIGGER %s AFTER %s ON %s FOR EACH ROW
BEGIN
INSERT INTO db_changes (table_name, record_id, action_type, changed_at, processed)
VALUES ('%s', NEW.id, '%s', CURRENT_TIMESTAMP, 0);
END`, name, action, table, table, action)
}

func listTriggers(db *gorm.DB, dialect string) ([]triggerInfo, error) {
	var (
		rows []triggerInfo
		err  error
	)
	if dialect == "mysql" {
		err = db.Raw(`
			SELECT TRIGGER_NAME AS name, EVENT_OBJECT_TABLE AS ` + "`table`" + `
			FROM information_schema.triggers
			WHERE TRIGGER_SCHEMA = DATABASE() AND TRIGGER_NAME LIKE 'trg\_%'`).Scan(&rows).Error
	} else {
		err = db.Raw(`SELECT name, tbl_name AS "table" FROM sqlite_master WHERE type = 'trigger' AND name LIKE 'trg_%'`).Scan(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("list triggers: %w", err)
	}
	return rows, nil
}
