package extractors

// builtinSourceTypes enumerates the closed set of non-custom source
// types this package knows how to construct. Declared explicitly rather
// than discovered via import side effects, per spec design note 9.
var builtinSourceTypes = []string{
	"file_csv",
	"file_parquet",
	"file_fixed_width",
	"file_space_delimited",
	"file_json",
	"file_jsonl",
	"file_excel",
	"database_mssql",
	"database_postgres",
	"database_mysql",
	"database_db2",
	"api_rest",
	"db_multi",
}

var registered bool

// RegisterBuiltins marks the built-in source types as available, making
// initialization order observable rather than relying on package-import
// side effects; IsBuiltin then reflects the registered set. Nothing in
// this repository calls it, so IsBuiltin reports false until a caller
// does.
func RegisterBuiltins() {
	registered = true
}

// IsBuiltin reports whether sourceType is one of the non-custom types
// this package constructs directly, after RegisterBuiltins has run.
func IsBuiltin(sourceType string) bool {
	if !registered {
		return false
	}
	for _, t := range builtinSourceTypes {
		if t == sourceType {
			return true
		}
	}
	return false
}
