package database

// SQLStore bundles the sqlite repositories behind the Store interface.
type SQLStore struct {
	*SQLTaskRepository
	*SQLRecordRepository
	*SQLRuleRepository
	*SQLCatalogRepository
}

func NewSQLStore(db *DB) *SQLStore {
	return &SQLStore{
		SQLTaskRepository:    NewTaskRepository(db),
		SQLRecordRepository:  NewRecordRepository(db),
		SQLRuleRepository:    NewRuleRepository(db),
		SQLCatalogRepository: NewCatalogRepository(db),
	}
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
