package dolt

// Default ports for dolt sql-server, usable in both CGO and non-CGO builds
// since server mode connects over the MySQL wire protocol regardless of how
// the local process was built.
const (
	DefaultSQLPort        = 3307
	DefaultRemotesAPIPort = 8080
)
