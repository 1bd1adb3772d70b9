package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/manifoldco/promptui"

	"github.com/marcus302/aanvraagapp/internal/domain"
	"github.com/marcus302/aanvraagapp/internal/store"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("aborted by user")

// commandContext is cancelled on SIGINT or SIGTERM so running stages can
// stop at their next checkpoint.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// confirm asks a yes/no question unless autoApprove is set.
func confirm(label string, autoApprove bool) error {
	if autoApprove {
		return nil
	}

	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}
	_, answer, err := prompt.Run()
	if err != nil {
		return err
	}
	if answer != PromptYes {
		return errAborted
	}
	return nil
}

// resolveListing accepts a listing id or its website.
func resolveListing(ctx context.Context, db *store.Store, ref string) (*domain.Listing, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return db.GetListing(ctx, id)
	}
	return db.GetListingByURL(ctx, ref)
}

// resolveClient accepts a client id or its name.
func resolveClient(ctx context.Context, db *store.Store, ref string) (*domain.Client, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return db.GetClient(ctx, id)
	}
	return db.GetClientByName(ctx, ref)
}

// selectClient lets the user pick one of the stored clients.
func selectClient(ctx context.Context, db *store.Store) (*domain.Client, error) {
	clients, err := db.ListClients(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no clients stored yet, add one with '%s client add'", app)
	}

	names := make([]string, len(clients))
	for i, c := range clients {
		names[i] = c.Name
	}

	prompt := promptui.Select{
		Label: "Client",
		Items: names,
		Size:  10,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return nil, err
	}
	return &clients[idx], nil
}
