// Package config provides the configuration for urlscan: defaults and
// validation for a scan, the optional .urlscan.yaml file with per-host
// request settings and extra component rules, and XDG directory paths.
package config
