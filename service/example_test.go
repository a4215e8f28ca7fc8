package service_test

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/healthops/health"
	"github.com/jonwraymond/healthops/service"
)

func Example() {
	ctx := context.Background()

	svc := service.New(service.Config{Environment: "production"})
	if err := svc.Initialize(ctx); err != nil {
		fmt.Println("initialize:", err)
		return
	}
	defer svc.Close()

	dbPing := health.NewCheckFunc("db-ping", "database", func(ctx context.Context, at time.Time) health.Result {
		return health.Healthy("db-ping", "connection pool responsive")
	})

	cfg := health.DefaultConfig()
	cfg.Interval = 15 * time.Second
	cfg.EnableRetry = true
	if _, err := svc.Register(dbPing, cfg); err != nil {
		fmt.Println("register:", err)
		return
	}

	res, err := svc.ExecuteCheck(ctx, "db-ping")
	if err != nil {
		fmt.Println("execute:", err)
		return
	}
	fmt.Printf("%s: %s\n", res.CheckName, res.Status)
	fmt.Printf("overall: %s\n", svc.OverallStatus())

	// Output:
	// db-ping: healthy
	// overall: healthy
}
