package main

import "github.com/spec-kit/askew/internal/bootstrap"

func main() {
	bootstrap.RunGateway("3000")
}
