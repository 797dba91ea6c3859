// Package router maps URL fragments to named handlers on top of a
// history.History.
//
// Route patterns use a small syntax compiled to anchored regular expressions:
//
//	search/:query        :name matches one path segment
//	files/*path          *name matches any run of characters, slashes included
//	docs(/:section)      parentheses make a part optional
//
// Every pattern also accepts a trailing "?query", passed to the handler
// undecoded as the last argument. The other arguments are URL-decoded. Empty
// or missing arguments are nil.
package router
