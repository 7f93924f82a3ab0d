// Command qc-grants lists or replaces the access allow-list of one subsection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"photo-qc-api/config"
	"photo-qc-api/models"
	"photo-qc-api/services"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		routeID      string
		subsectionID string
		emailsRaw    string
		replace      bool
		actor        string
	)

	flag.StringVar(&routeID, "route", "", "route id (required)")
	flag.StringVar(&subsectionID, "subsection", "", "subsection id (required)")
	flag.StringVar(&emailsRaw, "emails", "", "comma-separated allow-list used with -replace; empty reopens the subsection")
	flag.BoolVar(&replace, "replace", false, "replace the allow-list instead of printing it")
	flag.StringVar(&actor, "actor", "qc-grants@localhost", "email recorded as created_by")
	flag.Parse()

	if strings.TrimSpace(routeID) == "" || strings.TrimSpace(subsectionID) == "" {
		flag.Usage()
		os.Exit(1)
	}

	config.InitDB()

	access := services.NewAccessService(config.DB)
	caller := services.Identity{Email: actor, DisplayName: "qc-grants", Role: models.RoleAdmin}
	key := models.SubsectionKey{RouteID: strings.TrimSpace(routeID), SubsectionID: strings.TrimSpace(subsectionID)}
	ctx := context.Background()

	var (
		grants []models.SubsectionAccessGrant
		err    error
	)
	if replace {
		var emails []string
		for _, part := range strings.Split(emailsRaw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				emails = append(emails, part)
			}
		}
		grants, err = access.ReplaceGrants(ctx, caller, key, emails)
	} else {
		grants, err = access.ListGrants(ctx, caller, key)
	}
	if err != nil {
		log.Fatalf("%s/%s: %s", key.RouteID, key.SubsectionID, services.MessageOf(err))
	}

	if len(grants) == 0 {
		fmt.Printf("%s/%s is open to every user\n", key.RouteID, key.SubsectionID)
		return
	}
	fmt.Printf("%s/%s is restricted to %d user(s):\n", key.RouteID, key.SubsectionID, len(grants))
	for _, g := range grants {
		fmt.Printf("  %s\n", g.Email)
	}
}
