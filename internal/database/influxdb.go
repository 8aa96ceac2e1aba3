package database

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/model"
)

type InfluxDB struct {
	Client   influxdb2.Client
	WriteAPI api.WriteAPIBlocking
	org      string
	bucket   string
	logger   *log.Logger
}

func NewInfluxDB(cfg *config.Config, logger *log.Logger) *InfluxDB {
	opts := influxdb2.DefaultOptions().SetHTTPRequestTimeout(uint(cfg.InfluxTimeoutS))
	client := influxdb2.NewClientWithOptions(cfg.InfluxURL, cfg.InfluxToken, opts)
	return &InfluxDB{
		Client:   client,
		WriteAPI: client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxDatabase),
		org:      cfg.InfluxOrg,
		bucket:   cfg.InfluxDatabase,
		logger:   logger,
	}
}

func (db *InfluxDB) Close() {
	if db != nil && db.Client != nil {
		db.Client.Close()
	}
}

func (db *InfluxDB) Write(ctx context.Context, m model.Measurement) error {
	if err := db.WriteAPI.WritePoint(ctx, buildPoint(m)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Ping logs whether the server answers; it never fails startup.
func (db *InfluxDB) Ping(ctx context.Context) bool {
	ok, err := db.Client.Ping(ctx)
	if err != nil || !ok {
		db.logger.Printf("[influx] ping %s failed: %v", db.Client.ServerURL(), err)
		return false
	}
	db.logger.Printf("[influx] reachable at %s", db.Client.ServerURL())
	return true
}

// EnsureBucket creates the target bucket when it is missing. Needs an org;
// against a 1.x server (no org) the database must already exist. Failures
// are logged, not returned.
func (db *InfluxDB) EnsureBucket(ctx context.Context) {
	if db.org == "" {
		return
	}
	buckets := db.Client.BucketsAPI()
	if _, err := buckets.FindBucketByName(ctx, db.bucket); err == nil {
		return
	}

	org, err := db.Client.OrganizationsAPI().FindOrganizationByName(ctx, db.org)
	if err != nil {
		db.logger.Printf("[influx] unable to look up org %q: %v", db.org, err)
		return
	}
	if _, err := buckets.CreateBucketWithName(ctx, org, db.bucket); err != nil {
		db.logger.Printf("[influx] unable to create bucket %q: %v", db.bucket, err)
		return
	}
	db.logger.Printf("[influx] created bucket %q in org %q", db.bucket, db.org)
}

func buildPoint(m model.Measurement) *write.Point {
	fields := make(map[string]interface{}, len(m.Fields))
	for k, v := range m.Fields {
		if fv, ok := normalizeFieldValue(v); ok {
			fields[k] = fv
		}
	}
	return write.NewPoint(m.Name, m.Tags, fields, m.Time)
}

func normalizeFieldValue(v interface{}) (interface{}, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false
		}
		return x, true
	case float32:
		return normalizeFieldValue(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		return x, true
	case string:
		return x, true
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), true
	default:
		return nil, false
	}
}
