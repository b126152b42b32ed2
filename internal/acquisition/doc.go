// Package acquisition keeps a local copy of the published dataset and
// loads it.
//
// Source decides whether the copy on disk can be used or must be refreshed,
// and falls back to the previous copy when a refresh fails. Fetchers obtain
// the new file: HTTPFetcher downloads it, InboxFetcher adopts a file dropped
// into the inbox directory.
package acquisition
