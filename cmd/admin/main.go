package main

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/gin-org/sitebackend/internal/adminctl"
	"github.com/gin-org/sitebackend/internal/server"
	"github.com/gin-org/sitebackend/internal/server/config"
	"github.com/gin-org/sitebackend/internal/server/repositories/repomanager"
	"github.com/gin-org/sitebackend/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := server.OpenDatabase(ctx, cfg.DatabaseDSN, rm)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	accounts := services.NewAccountService(db, rm, server.NewTokenIssuer(cfg), nil, server.NewPolicyEngine(db, rm, nil), cfg)

	r := &adminctl.Runner{
		Provisioner: accounts,
		In:          bufio.NewReader(os.Stdin),
		Out:         os.Stdout,
		Getenv:      os.Getenv,
	}
	if err := r.Run(ctx, adminctl.Command(os.Args[1:])); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}

}
