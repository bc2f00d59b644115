package config

import "time"

const (
	defaultOrigin      = "Riverton, UT"
	defaultDestination = "Hanna, UT"
)

// DefaultConfig returns the settings used for the Riverton to Hanna commute
func DefaultConfig() *Config {
	return &Config{
		UDOT: UDOTConfig{
			BaseURL:    "https://www.udottraffic.utah.gov/api/v2/get",
			Timeout:    30 * time.Second,
			RateLimit:  10,
			RateWindow: 60 * time.Second,
			CacheTTL:   time.Minute,
		},
		Google: GoogleConfig{
			BaseURL: "https://routes.googleapis.com",
			Timeout: 30 * time.Second,
		},
		Vision: VisionConfig{
			Enabled:   true,
			Model:     "gpt-4o-mini",
			MaxTokens: 300,
			Timeout:   60 * time.Second,
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "data/wolfcreek.db",
			ImageDir:   "data",
			TableName:  "wolf-creek-pass",
			BucketName: "wolf-creek-pass",
			Region:     "us-west-2",
		},
		Capture: CaptureConfig{
			CameraBufferKm:  2.0,
			Workers:         1,
			DownloadTimeout: 30 * time.Second,
			MaxImageBytes:   10 << 20,
		},
		Filters: FilterConfig{
			ConditionRoadways: []string{"i-15", "us-189", "us-40", "sr-35", "sr-32", "us-6"},
			WeatherStations: []string{
				"wolf creek", "daniels", "heber", "provo canyon", "strawberry", "deer creek",
				"parleys", "spanish fork", "us-40", "sr-35", "duchesne", "currant creek",
			},
			Passes:            []string{"wolf creek", "parley", "daniels", "provo canyon", "mayflower", "sr-248", "pinion"},
			EventBufferKm:     5.0,
			PlowBufferKm:      10.0,
			ConditionBufferKm: 2.0,
		},
		Schedule: ScheduleConfig{
			Interval:     time.Hour,
			CycleTimeout: 30 * time.Minute,
		},
		Lock: LockConfig{
			Key: "wolfcreek:cycle",
			TTL: 45 * time.Minute,
		},
		Export: ExportConfig{
			Enabled:    true,
			Prefix:     "",
			IndexLimit: 200,
			KML:        true,
			Kafka:      KafkaConfig{Topic: "wolfcreek.cycles"},
			Alerts:     AlertsConfig{Timeout: 10 * time.Second},
		},
		Routes: defaultRoutes(),
	}
}

func defaultRoutes() []RouteConfig {
	i215 := []int{91683, 91581, 91614}
	parleys := []int{91604, 91619, 91746, 91642, 90912, 91410, 91425, 91761, 91736}
	wolfCreek := []int{90544, 90779}
	duchesne := []int{90043, 90661, 89190}
	heber := []int{90389, 90353, 91773}

	return []RouteConfig{
		{
			ID:          "parleys-wolfcreek",
			Name:        "Parley's / Wolf Creek",
			Color:       "#3b82f6",
			Origin:      defaultOrigin,
			Destination: defaultDestination,
			Waypoints:   []string{"Kamas, UT", "Francis, UT"},
			CameraIDs:   concat(i215, parleys, wolfCreek, duchesne),
			ClosurePass: "wolf creek",
		},
		{
			ID:          "provo-wolfcreek",
			Name:        "Provo Canyon / Wolf Creek",
			Color:       "#8b5cf6",
			Origin:      defaultOrigin,
			Destination: defaultDestination,
			Waypoints:   []string{"Provo Canyon, UT", "Heber City, UT", "Kamas, UT"},
			CameraIDs:   concat([]int{90363, 87874, 90727, 90626, 90728, 90275}, heber, wolfCreek, duchesne),
			ClosurePass: "wolf creek",
		},
		{
			ID:          "us40-tabiona",
			Name:        "US-40 / Tabiona",
			Color:       "#f97316",
			Origin:      defaultOrigin,
			Destination: defaultDestination,
			Waypoints:   []string{"Duchesne, UT", "Tabiona, UT"},
			CameraIDs: concat(i215, parleys, heber,
				[]int{87716, 90593, 92985, 90307},        // Daniels Summit
				[]int{90207, 88216, 90980, 90465},        // Strawberry Reservoir
				duchesne),
		},
	}
}

func concat(groups ...[]int) []int {
	var out []int
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
