package cleantxtgql

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtrest "github.com/cleantxt/cleantxt-go-utils/cleantxt-rest"
	"github.com/cleantxt/cleantxt-go-utils/graphiql"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/savaki/apigateway"
)

// Webserver serves resolver at /graphql, with graphiql attached when
// introspection is allowed.
func Webserver(ctx context.Context, resolver Resolver) error {
	router, err := Router(resolver)
	if err != nil {
		return err
	}
	return Serve(ctx, router, resolver.Config())
}

// Router mounts the graphql endpoint for resolver.
func Router(resolver Resolver) (chi.Router, error) {
	config := resolver.Config()
	handler, err := GraphQLRelay(resolver)
	if err != nil {
		return nil, err
	}

	router := cleantxtrest.Middlewares(config.Logger, chi.NewRouter())
	router.Post("/graphql", middleware.NoCache(handler).ServeHTTP)
	// Allow arbitrary path parameters, for better UX in the browser
	router.Post("/graphql/*", middleware.NoCache(handler).ServeHTTP)
	if AllowIntrospection() {
		path := "/graphql"
		if config.Service.Subpath != "" {
			path = fmt.Sprintf("/%v/graphql", config.Service.Subpath)
		}
		router.Get("/graphql", graphiql.New(path))
	}
	return router, nil
}

// GraphQLRelay parses the resolver's schema into an http handler.
func GraphQLRelay(resolver Resolver) (*relay.Handler, error) {
	finalSchema := resolver.Schema()

	config := resolver.Config()
	config.Service.Schema = finalSchema

	opts := []graphql.SchemaOpt{
		graphql.MaxDepth(15),
		graphql.UseFieldResolvers(),
	}
	if !AllowIntrospection() {
		opts = append(opts, graphql.DisableIntrospection())
	}

	schema, err := graphql.ParseSchema(finalSchema, resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse schema: %w", err)
	}

	return &relay.Handler{Schema: schema}, nil
}

// Serve listens locally in console mode and runs as a Lambda otherwise.
func Serve(ctx context.Context, router chi.Router, config *BaseConfig) error {
	if cleantxtcli.CommonOpts.Console {
		if config.Service.Subpath != "" {
			newRouter := chi.NewRouter()
			newRouter.Mount(fmt.Sprintf("/%v", config.Service.Subpath), router)
			router = newRouter
		}
		return cleantxtrest.Webserver(ctx, config.Logger, router)
	}

	lambda.Start(apigateway.Wrap(router, cleantxtcli.CommonOpts.Env, config.Service.Subpath))
	return nil
}
