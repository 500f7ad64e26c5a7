package source

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/forceweave/pkg/errors"
	"github.com/matzehuels/forceweave/pkg/graph"
)

// Collection names read by Mongo.
const (
	NodesCollection = "nodes"
	LinksCollection = "links"
)

// DefaultMongoTimeout bounds connection and queries.
const DefaultMongoTimeout = 10 * time.Second

// Mongo reads the graph of one project from MongoDB. Node documents look
// like
//
//	{project, id, category, title, createdAt, externalUrl}
//
// and link documents like {project, source, target}.
type Mongo struct {
	client   *mongo.Client
	database string
	project  string
	logger   *log.Logger
}

type nodeDoc struct {
	ID          string    `bson:"id"`
	Category    string    `bson:"category"`
	Title       string    `bson:"title"`
	CreatedAt   time.Time `bson:"createdAt"`
	ExternalURL string    `bson:"externalUrl"`
}

type linkDoc struct {
	Source string `bson:"source"`
	Target string `bson:"target"`
}

// NewMongo connects to uri and verifies the connection.
func NewMongo(ctx context.Context, uri, database, project string, logger *log.Logger) (*Mongo, error) {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultMongoTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetTimeout(DefaultMongoTimeout))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "ping mongo")
	}
	return &Mongo{client: client, database: database, project: project, logger: logger}, nil
}

// Name returns "mongo:<database>/<project>".
func (m *Mongo) Name() string { return "mongo:" + m.database + "/" + m.project }

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Fetch reads every node and link of the project. Node documents with an
// unknown category are skipped with a warning.
func (m *Mongo) Fetch(ctx context.Context) (graph.Data, error) {
	db := m.client.Database(m.database)
	filter := bson.M{"project": m.project}

	var nodes []nodeDoc
	if err := m.findAll(ctx, db.Collection(NodesCollection), filter, &nodes); err != nil {
		return graph.Data{}, err
	}
	var links []linkDoc
	if err := m.findAll(ctx, db.Collection(LinksCollection), filter, &links); err != nil {
		return graph.Data{}, err
	}

	d := graph.Data{
		Nodes: make([]*graph.Node, 0, len(nodes)),
		Links: make([]*graph.Link, 0, len(links)),
	}
	for _, doc := range nodes {
		c, err := graph.ParseCategory(doc.Category)
		if err != nil {
			m.logger.Warn("skipping node", "id", doc.ID, "category", doc.Category, "code", errors.ErrCodeInvalidCategory)
			continue
		}
		n := graph.NewNode(doc.ID, c)
		n.Title = doc.Title
		n.CreatedAt = doc.CreatedAt
		n.ExternalURL = doc.ExternalURL
		d.Nodes = append(d.Nodes, n)
	}
	for _, doc := range links {
		d.Links = append(d.Links, graph.NewLink(doc.Source, doc.Target))
	}
	m.logger.Debug("fetched project", "project", m.project, "nodes", len(d.Nodes), "links", len(d.Links))
	return d, nil
}

func (m *Mongo) findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, out any) error {
	cur, err := coll.Find(ctx, filter)
	if err != nil {
		return classify(err, "find in "+coll.Name())
	}
	if err := cur.All(ctx, out); err != nil {
		return classify(err, "decode "+coll.Name())
	}
	return nil
}

// classify marks network and timeout failures as retryable.
func classify(err error, what string) error {
	switch {
	case stderrors.Is(err, context.Canceled):
		return err
	case mongo.IsTimeout(err), stderrors.Is(err, context.DeadlineExceeded):
		return Retryable(errors.Wrap(errors.ErrCodeTimeout, err, "%s", what))
	case mongo.IsNetworkError(err):
		return Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "%s", what))
	default:
		return errors.Wrap(errors.ErrCodeInternal, err, "%s", what)
	}
}
