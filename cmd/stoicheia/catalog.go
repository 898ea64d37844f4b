package main

import (
	"github.com/fenilsonani/stoicheia/pkg/stoicheia"
)

// openCatalog opens the catalog named by the root command's persistent
// --db/--memory flags.
func openCatalog() (*stoicheia.Catalog, error) {
	if useMem {
		return stoicheia.OpenMemory(), nil
	}
	return stoicheia.Open(dbPath)
}
