package mapper

import "strings"

// allowedFunctions lists the scalar functions a mapping may call. Anything
// else is rejected when the mapping is loaded.
var allowedFunctions = map[string]bool{
	"abs":          true,
	"ceil":         true,
	"coalesce":     true,
	"concat":       true,
	"current_date": true,
	"date":         true,
	"date_part":    true,
	"date_trunc":   true,
	"day":          true,
	"floor":        true,
	"greatest":     true,
	"ifnull":       true,
	"least":        true,
	"length":       true,
	"lower":        true,
	"month":        true,
	"nullif":       true,
	"round":        true,
	"strftime":     true,
	"substr":       true,
	"substring":    true,
	"trim":         true,
	"upper":        true,
	"year":         true,
}

var extractFields = map[string]bool{
	"year": true, "quarter": true, "month": true, "week": true, "day": true,
	"dow": true, "doy": true, "hour": true, "minute": true, "second": true, "epoch": true,
}

// IsAllowedFunction reports whether a mapping may call the named function.
func IsAllowedFunction(name string) bool {
	return allowedFunctions[strings.ToLower(name)]
}

// IsExtractField reports whether field is a supported EXTRACT date part.
func IsExtractField(field string) bool {
	return extractFields[strings.ToLower(field)]
}
