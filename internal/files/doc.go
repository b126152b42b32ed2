// Package files provides file system operations and discovery utilities
// for the dataset files.
//
// Discovery lists candidate dataset files in a directory (the inbox that
// manual or external downloads drop files into) and picks the newest one.
//
// Manager moves, copies and atomically writes files inside the application
// layout described by config.Paths, e.g. backing up dados.xlsx to
// dados_old.xlsx before a download and writing the download log.
package files
