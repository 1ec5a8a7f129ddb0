// Package build holds version information set at link time, e.g.
//
//	go build -ldflags "-X github.com/stripe/statsdecoder/util/build.VERSION=$(git rev-parse HEAD)"
package build

import "net/http"

const defaultValue = "dirty"

var (
	BUILD_DATE = defaultValue
	VERSION    = defaultValue
)

// Tags returns the tags every self-reported metric carries.
func Tags() []string {
	return []string{"git_sha:" + VERSION}
}

func HandleBuildDate(writer http.ResponseWriter, _ *http.Request) {
	writer.Write([]byte(BUILD_DATE))
}

func HandleVersion(writer http.ResponseWriter, _ *http.Request) {
	writer.Write([]byte(VERSION))
}
