package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/MrSnakeDoc/smartmarks/internal/config"
	"github.com/MrSnakeDoc/smartmarks/internal/postgres"
	"github.com/MrSnakeDoc/smartmarks/internal/version"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("smartmarks-migrate"))
		return
	}

	dsn := config.LoadDatabase()
	if err := postgres.Migrate(dsn, *direction); err != nil {
		log.Printf("❌ migrate %s failed: %v", *direction, err)
		os.Exit(1)
	}
	log.Printf("✅ migrations applied (%s)", *direction)
}
