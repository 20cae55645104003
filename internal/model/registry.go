package model

import (
	"sort"
	"sync"

	"gorm.io/gorm/schema"
)

// ModelTypeRegistry maps model names to a zero value of each persisted type
var ModelTypeRegistry = map[string]interface{}{
	"User":               User{},
	"AuthSession":        AuthSession{},
	"Profile":            Profile{},
	"Property":           Property{},
	"Tenancy":            Tenancy{},
	"Conversation":       Conversation{},
	"Message":            Message{},
	"MaintenanceRequest": MaintenanceRequest{},
	"Application":        Application{},
}

// Table is a parsed gorm model with its column names
type Table struct {
	Model   string
	Name    string
	Columns []string
}

// Tables parses every registered model into its table definition
func Tables() ([]*Table, error) {
	cache := &sync.Map{}
	tables := make([]*Table, 0, len(ModelTypeRegistry))
	for name, m := range ModelTypeRegistry {
		s, err := schema.Parse(m, cache, schema.NamingStrategy{})
		if err != nil {
			return nil, err
		}
		columns := make([]string, 0, len(s.Fields))
		for _, f := range s.Fields {
			if f.DBName != "" {
				columns = append(columns, f.DBName)
			}
		}
		tables = append(tables, &Table{Model: name, Name: s.Table, Columns: columns})
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return tables, nil
}
