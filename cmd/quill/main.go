package main

import (
	"context"
	"os"

	"github.com/rbright/quill/internal/app"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Exit(app.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr))
}
