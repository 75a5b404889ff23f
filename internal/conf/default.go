package conf

import "time"

func DefaultConfig() Bootstrap {
	return Bootstrap{
		Server: Server{
			HTTP: ServerHTTP{
				Port:    15125,
				Timeout: Duration(60 * time.Second),
			},
		},
		Data: Data{
			Database: Database{
				Dsn:             "./configs/data.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: Duration(6 * time.Hour),
				SlowThreshold:   Duration(200 * time.Millisecond),
			},
		},
		Gateway: Gateway{
			RequestTimeout:    Duration(3 * time.Second),
			HeartbeatInterval: Duration(30 * time.Second),
			HeartbeatTimeout:  Duration(70 * time.Second),
		},
		Media: Media{
			URL:           "http://127.0.0.1:1290",
			PullTimeout:   Duration(10 * time.Second),
			AutoStopAfter: 0,
		},
		Session: Session{
			RetryDelay: Duration(5 * time.Second),
			Channel:    1,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}
