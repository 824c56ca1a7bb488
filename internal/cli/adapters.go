package cli

// Store adapters register themselves with the adapter registry on import.
import (
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/postgres"
	_ "github.com/leapstack-labs/leapkpi/pkg/adapters/sqlite"
)
