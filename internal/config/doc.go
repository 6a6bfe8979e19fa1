// Package config loads nanotail's TOML configuration.
//
// Every field is optional. A missing file is not an error: Load returns
// Default() so the server runs out of the box against /var/log.
//
// Example config.toml:
//
//	addr = ":3000"
//	log_dir = "/var/log"
//	web_dir = "~/nanotail/web"
//	default_count = 1000
//	chunk_size = 65536
//	request_timeout = "30s"
//	log_level = "info"
//	gzip = true
//
// default_count is the ceiling applied when a request omits count. Queries
// never fall back to reading a whole file.
//
// Paths starting with ~ are expanded to the home directory and made absolute.
package config
