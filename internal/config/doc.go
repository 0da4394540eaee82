// Package config defines configuration structures for the drivefetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (DRIVEFETCH_ prefix, plus API_KEY and
//     SERVICE_ACCOUNT_JSON)
//   - YAML configuration file
//
// Later sources win: defaults, then the file, then the environment, then
// flags.
package config
