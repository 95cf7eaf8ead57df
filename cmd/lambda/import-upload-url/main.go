// Import upload URL Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/viniciusnovato/finance-sub000/internal/handlers"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

func main() {
	_ = utils.InitLogger("info")
	defer utils.Sync()

	handler, err := handlers.NewPresignedURLHandler(context.Background())
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}

	lambda.Start(handler.Handle)
}
