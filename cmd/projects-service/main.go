package main

import (
	"github.com/spec-kit/askew/internal/bootstrap"
	"github.com/spec-kit/askew/internal/domain"
)

func main() {
	bootstrap.RunResourceService(domain.ProjectsSchema, "3002")
}
