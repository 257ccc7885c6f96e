package models

import (
	"log"

	"bitbucket.org/mmdatafocus/mfgops_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&BomLineage{}, &BomVersion{}, &BomComponent{},
		&Posting{}, &LedgerEntry{},
		&AuditRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
