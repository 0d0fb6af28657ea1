// Package influxdb records BrewPi telemetry in InfluxDB v2.
//
// Temperature reports decoded from controllers are written to the
// "temperatures" measurement and connection changes to "controller_status",
// both tagged with the controller URI:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteTemperatures(uri, map[string]float64{"beerTemp": 19.8}, time.Now())
//
// Writes are batched according to influxdb.batch_size and
// influxdb.flush_interval.
package influxdb
