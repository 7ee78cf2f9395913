package datasource

// IsPermanentStatus reports whether an HTTP status code is documented as a
// permanent failure: the data source should go off and never retry rather
// than treat it as a transient network error.
func IsPermanentStatus(statusCode int) bool {
	switch statusCode {
	case 401, 403, 410:
		return true
	default:
		return false
	}
}
