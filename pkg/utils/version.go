// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Overridden at link time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies this build to the completion service.
func UserAgent() string {
	return "forum-rest-api/" + Version
}
