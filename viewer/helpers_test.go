package viewer

import "github.com/ghyeongl/photocull/library"

func changeOf(paths ...string) library.Change {
	return library.Change{Paths: paths}
}
