// Package config defines the certd daemon configuration: the managed
// domain sets, renewal tuning (window, concurrency, backoff), challenge
// solver settings, and the web server reload command.
//
// Configuration lives in a single YAML file, by default
// /etc/certd/config.yaml:
//
//	email: admin@example.com
//	ca_directory_url: https://acme-v02.api.letsencrypt.org/directory
//	cert_dir: /etc/certd/certs
//	renewal_window_days: 30
//	concurrency: 2
//	check_interval: 1h
//	attempt_timeout: 5m
//	backoff:
//	  base: 1m
//	  max: 24h
//	  max_attempts: 10
//	reload:
//	  command: [systemctl, reload, nginx]
//	  fallback: [nginx, -s, reload]
//	challenge:
//	  type: http-01
//	  http_address: ":80"
//	sites:
//	  - domains: [example.com, www.example.com]
//	  - domains: [api.example.com]
//
// A malformed file is fatal at startup; the check command exits with
// code 2 in that case.
package config
