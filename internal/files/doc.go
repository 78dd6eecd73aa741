// Package files discovers spreadsheet documents on disk.
//
// Lister enumerates the workbooks of one directory in a deterministic
// order, optionally sniffing their content. Root confines caller-supplied
// directories to a base path, which the HTTP service uses for requests.
//
// Example usage:
//
//	lister := files.NewLister(files.ListerOptions{Order: files.OrderName}, logger)
//	refs, err := lister.List(ctx, "/data/holes")
//
//	root := files.NewRoot("/data")
//	dir, err := root.Resolve("holes/2024")
package files
