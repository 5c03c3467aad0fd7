package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"matrimony-subscription/internal/config"
)

// Collection names of the document store layout.
const (
	colSubscriptions   = "subscriptions"
	colContactUsage    = "contactUsage"
	colPurchaseHistory = "purchaseHistory"
	colPackages        = "packages"
	colPayments        = "payments"
)

// NewApp initialises the Firebase app shared by the document store and ID-token verification.
// Without a credentials file the ambient application default credentials are used.
func NewApp(ctx context.Context, cfg config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	return app, nil
}

// NewClient opens the Firestore client of app.
func NewClient(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	cli, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return cli, nil
}

// Ping returns a readiness probe that reads at most one catalog document.
func Ping(cli *firestore.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, err := cli.Collection(colPackages).Limit(1).Documents(ctx).GetAll(); err != nil {
			return classify(err)
		}
		return nil
	}
}
