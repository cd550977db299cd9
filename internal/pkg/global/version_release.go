//go:build release

package global

import "fmt"

var MAJOR = 0
var MINOR = 0
var PATCH = 0

var UserAgent = fmt.Sprintf("tget/%d.%d.%d", MAJOR, MINOR, PATCH)

var Dev = false
