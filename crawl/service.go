package crawl

import (
	"context"
	"log/slog"

	"github.com/sweetpotato0/notelm/background"
	"github.com/sweetpotato0/notelm/model"
	"github.com/sweetpotato0/notelm/pkg/logging"
	"github.com/sweetpotato0/notelm/pkg/telemetry"
)

// CrawlStore is the slice of the persistence layer the executor needs.
type CrawlStore interface {
	GetJob(ctx context.Context, id string) (model.CrawlJob, error)
	UpdateJob(ctx context.Context, j model.CrawlJob) error
	SaveDiscovered(ctx context.Context, d model.DiscoveredURL) error
}

// DocumentStore creates and checks documents on behalf of the crawl.
type DocumentStore interface {
	Save(ctx context.Context, d model.Document) error
	ExistsByURL(ctx context.Context, notebookID, url string) (bool, error)
}

// Ingestor schedules background ingestion of a freshly created document.
type Ingestor interface {
	Trigger(documentID string) bool
}

// Service executes crawl jobs breadth-first.
type Service struct {
	crawls     CrawlStore
	documents  DocumentStore
	discoverer LinkDiscoverer
	ingestor   Ingestor
	registry   *background.Registry
	logger     *slog.Logger
}

// NewService wires a crawl executor.
func NewService(crawls CrawlStore, documents DocumentStore, discoverer LinkDiscoverer, ingestor Ingestor, registry *background.Registry) *Service {
	return &Service{
		crawls:     crawls,
		documents:  documents,
		discoverer: discoverer,
		ingestor:   ingestor,
		registry:   registry,
		logger:     logging.WithComponent("crawl"),
	}
}

// Trigger schedules background execution of the job. A job already
// executing is not scheduled again.
func (s *Service) Trigger(crawlJobID string) bool {
	return s.registry.Trigger("crawl:"+crawlJobID, func(ctx context.Context) error {
		return s.Execute(ctx, crawlJobID)
	})
}

type queueItem struct {
	url   string
	depth int
}

// Execute runs the breadth-first crawl for one job. Normal termination
// marks the job COMPLETED; an uncaught failure in the loop marks it
// FAILED. Per-URL link-discovery failures are logged and skipped. The
// job row is reloaded at the top of each iteration so an external
// cancel is honored within one page of work.
func (s *Service) Execute(ctx context.Context, crawlJobID string) error {
	ctx, span := telemetry.Tracer("crawl").Start(ctx, "service.execute")
	defer span.End()

	job, err := s.crawls.GetJob(ctx, crawlJobID)
	if err != nil {
		return err
	}
	job, err = job.Start()
	if err != nil {
		return err
	}
	if err := s.crawls.UpdateJob(ctx, job); err != nil {
		return err
	}

	job, runErr := s.runBFS(ctx, job)
	if runErr != nil {
		s.logger.Error("crawl failed", "crawl_job_id", job.ID, "error", runErr)
		failed, ferr := job.Fail(runErr.Error())
		if ferr != nil {
			return ferr
		}
		if uerr := s.crawls.UpdateJob(ctx, failed); uerr != nil {
			return uerr
		}
		return runErr
	}
	if job.Status == model.CrawlCancelled {
		s.logger.Info("crawl cancelled", "crawl_job_id", job.ID, "pages", job.TotalIngested)
		return nil
	}

	completed, err := job.Complete()
	if err != nil {
		return err
	}
	if err := s.crawls.UpdateJob(ctx, completed); err != nil {
		return err
	}
	s.logger.Info("crawl completed",
		"crawl_job_id", job.ID,
		"discovered", completed.TotalDiscovered,
		"ingested", completed.TotalIngested)
	return nil
}

func (s *Service) runBFS(ctx context.Context, job model.CrawlJob) (model.CrawlJob, error) {
	visited := make(map[string]struct{})
	queue := []queueItem{{url: job.SeedURL, depth: 0}}
	pages := 0

	for len(queue) > 0 && pages < job.MaxPages {
		// Refresh so an external cancel stops the loop promptly.
		current, err := s.crawls.GetJob(ctx, job.ID)
		if err != nil {
			return job, err
		}
		if current.Status == model.CrawlCancelled {
			return current, nil
		}
		job = current

		item := queue[0]
		queue = queue[1:]

		if _, ok := visited[item.url]; ok {
			continue
		}
		if item.depth > job.MaxDepth {
			continue
		}
		visited[item.url] = struct{}{}

		exists, err := s.documents.ExistsByURL(ctx, job.NotebookID, item.url)
		if err != nil {
			return job, err
		}
		if exists {
			if err := s.crawls.SaveDiscovered(ctx, model.NewDiscoveredURL(
				job.ID, item.url, item.depth, model.DiscoveredSkipped, "")); err != nil {
				return job, err
			}
			continue
		}

		doc := model.NewDocument(job.NotebookID, item.url)
		if err := s.documents.Save(ctx, doc); err != nil {
			return job, err
		}
		s.ingestor.Trigger(doc.ID)
		if err := s.crawls.SaveDiscovered(ctx, model.NewDiscoveredURL(
			job.ID, item.url, item.depth, model.DiscoveredIngested, doc.ID)); err != nil {
			return job, err
		}

		pages++
		job = job.CountPage()
		if err := s.crawls.UpdateJob(ctx, job); err != nil {
			return job, err
		}
		if pages >= job.MaxPages {
			break
		}

		if item.depth < job.MaxDepth {
			links, err := s.discoverer.DiscoverLinks(ctx, item.url, job.Domain,
				job.URLIncludePattern, job.URLExcludePattern)
			if err != nil {
				s.logger.Warn("link discovery failed, continuing",
					"crawl_job_id", job.ID, "url", item.url, "error", err)
				continue
			}
			for _, link := range links {
				if _, ok := visited[link.URL]; !ok {
					queue = append(queue, queueItem{url: link.URL, depth: item.depth + 1})
				}
			}
		}
	}
	return job, nil
}
