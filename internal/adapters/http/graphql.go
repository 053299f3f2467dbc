package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/cembilgin/placepulse/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	activeUserType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ActiveUser",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"photo_url":  &graphql.Field{Type: graphql.String},
			"entered_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	reviewType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Review",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"venue_id":   &graphql.Field{Type: graphql.String},
			"user_id":    &graphql.Field{Type: graphql.String},
			"user_name":  &graphql.Field{Type: graphql.String},
			"rating":     &graphql.Field{Type: graphql.Float},
			"comment":    &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	venueType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Venue",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"name":          &graphql.Field{Type: graphql.String},
			"location":      &graphql.Field{Type: coordinateType},
			"description":   &graphql.Field{Type: graphql.String},
			"address":       &graphql.Field{Type: graphql.String},
			"opening_hours": &graphql.Field{Type: graphql.String},
			"rating":        &graphql.Field{Type: graphql.Float},
			"distance":      &graphql.Field{Type: graphql.Float},
			"reviews":       &graphql.Field{Type: graphql.NewList(reviewType)},
			"active_users":  &graphql.Field{Type: graphql.NewList(activeUserType)},
		},
	})

	profileType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Profile",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"photo_url":      &graphql.Field{Type: graphql.String},
			"allow_messages": &graphql.Field{Type: graphql.Boolean},
			"visited_places": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"followers":      &graphql.Field{Type: graphql.Int},
			"following":      &graphql.Field{Type: graphql.Int},
		},
	})

	visitorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Visitor",
		Fields: graphql.Fields{
			"user_id":    &graphql.Field{Type: graphql.String},
			"name":       &graphql.Field{Type: graphql.String},
			"photo_url":  &graphql.Field{Type: graphql.String},
			"last_visit": &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"venues": &graphql.Field{
				Type:        graphql.NewList(venueType),
				Description: "List the venue catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Venues.List(p.Context)
				},
			},
			"venuesNearby": &graphql.Field{
				Type:        graphql.NewList(venueType),
				Description: "Venues within a radius of a point, in catalog order",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 100.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					return deps.Venues.FindNearby(p.Context, lat, lon, radius)
				},
			},
			"venue": &graphql.Field{
				Type:        venueType,
				Description: "Get a venue with reviews and live active users",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Venues.Get(p.Context, id)
				},
			},
			"activeUsers": &graphql.Field{
				Type:        graphql.NewList(activeUserType),
				Description: "Reconciled active users at a venue",
				Args: graphql.FieldConfigArgument{
					"venue_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					venueID := p.Args["venue_id"].(string)
					return deps.Venues.ActiveUsers(p.Context, venueID)
				},
			},
			"recentVisitors": &graphql.Field{
				Type:        graphql.NewList(visitorType),
				Description: "Distinct visitors of a venue over the last thirty days",
				Args: graphql.FieldConfigArgument{
					"venue_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					venueID := p.Args["venue_id"].(string)
					return deps.Venues.RecentVisitors(p.Context, venueID)
				},
			},
			"profile": &graphql.Field{
				Type:        profileType,
				Description: "Get a user profile",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Profiles.Get(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}

// Ensure domain types implement field resolvers for graphql-go via struct tags
var _ = domain.Venue{}
var _ = domain.Profile{}
var _ = domain.ActiveUser{}
