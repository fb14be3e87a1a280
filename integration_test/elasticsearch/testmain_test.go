//go:build integration

package elasticsearch

import (
	"context"
	"github.com/Avi18971911/spangrouper/pkg/elasticsearch/bootstrapper"
	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"
	"log"
	"os"
	"testing"
)

var es *elasticsearch.Client
var logger *zap.Logger

func TestMain(m *testing.M) {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	os.Exit(runTests(m))
}

func runTests(m *testing.M) int {
	ctx := context.Background()
	uri, cleanup, err := startElasticSearchContainer(ctx, logger)
	if err != nil {
		logger.Error("Failed to start container", zap.Error(err))
		return 1
	}
	defer cleanup()

	es, err = elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{uri}})
	if err != nil {
		logger.Error("Failed to create elasticsearch client", zap.Error(err))
		return 1
	}

	bs := bootstrapper.NewBootstrapper(es, logger)
	if err := bs.BootstrapElasticsearch(ctx, bootstrapper.DefaultTraceIndexName); err != nil {
		logger.Error("Failed to bootstrap elasticsearch", zap.Error(err))
		return 1
	}
	return m.Run()
}
