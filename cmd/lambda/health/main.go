// Health Check Lambda entry point
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/viniciusnovato/finance-sub000/internal/handlers"
	"github.com/viniciusnovato/finance-sub000/internal/utils"
)

func main() {
	_ = utils.InitLogger("info")
	defer utils.Sync()

	handler := handlers.NewHealthHandler()
	defer handler.Close()

	lambda.Start(handler.Handle)
}
