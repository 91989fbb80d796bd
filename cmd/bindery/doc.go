// Command bindery is the scan-to-PDF conversion tool. `bindery serve`
// runs the daemon with the queue worker, HTTP API and inbox watcher;
// `bindery convert` processes a single scan directory in the foreground.
package main
