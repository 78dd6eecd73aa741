// Package config provides configuration loading for drillagg.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later sources
// overriding earlier ones:
//
//  1. Default values (Default)
//  2. A YAML file given by path, $DRILLAGG_CONFIG, ./drillagg.yaml,
//     ./configs/drillagg.yaml or the user config directory
//  3. Environment variables, optionally seeded from a .env file
//
// # Environment Variables
//
// Variables follow the pattern DRILLAGG_<SECTION>_<FIELD>:
//
//	DRILLAGG_AGGREGATE_INPUT_DIR=./logs
//	DRILLAGG_AGGREGATE_DATA_START_ID="Hole Number"
//	DRILLAGG_AGGREGATE_WORKERS=4
//	DRILLAGG_LOGGING_LEVEL=debug
//	DRILLAGG_SERVER_PORT=8080
//	DRILLAGG_DATABASE_URL=postgres://...
//
// # Run State
//
// LoadState and SaveState persist the last completed run so that the CLI
// can reuse the previous input directory and output file when none is
// given.
package config
