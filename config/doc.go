// Package config loads heritagestreams configuration.
//
// Configuration files are YAML or JSON (JSON is read by the YAML decoder).
// Layers are applied in order over the defaults, then environment overrides,
// then validation:
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/base.yaml")
//	loader.AddLayer("configs/production.yaml")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Environment overrides
//
//	HERITAGE_RELAYS      comma-separated relay URLs
//	HERITAGE_HTTP_PORT   gateway port
//	HERITAGE_NATS_URL    NATS server URL; setting it enables the live bridge
//	HERITAGE_LOG_LEVEL   debug, info, warn or error
//
// Durations are written the way time.ParseDuration reads them ("5s", "2m").
package config
