// Package harness runs strict-fetch scenarios end to end.
//
// A scenario declares a schema, fixture rows, one root query and a list of
// access steps. The harness builds a fresh in-memory database, executes the
// query through the orm package and evaluates every step against the
// materialized records, checking the outcome and how many statements each
// phase issued.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	seed: pizza                # built-in data set (optional)
//	schema: |                  # inline CUE, or schema_dir: path/to/dir
//	  model: Location: { fields: city: string }
//	override: unset            # global strict override: unset | true | false
//	fixtures:
//	  - model: Location
//	    fields: { city: Naples }
//	  - link: Restaurant.pizzas
//	    owner: 1
//	    targets: [2, 3]
//	query:
//	  model: Restaurant
//	  strict: true
//	  select_related: [location]
//	  fetch_related: [pizzas.toppings]
//	  prefetch:
//	    - path: userfavorite_set
//	      query: { model: UserFavorite, select_related: [user] }
//	expect_queries: 4
//	steps:
//	  - access: "[0].location.city"
//	    expect: ok
//	    value: Naples
//	    queries: 0
//
// # Access Expressions
//
// An access expression walks from the root query:
//
//	[N]            index into a collection (fetching it first)
//	.field         scalar, to-one or to-many accessor of a record
//	.all()         chain All() on a collection
//	.filter(f=v)   chain Filter on a collection
//	.prefetch(p)   chain PrefetchRelated on a collection
//	.first()       First record of a collection
//	.exists()      Exists on a collection
//	.count()       Count on a collection
//	.attr(name)    Prefetch.ToAttr results of a record
//
// A step's expect is ok, relation_not_fetched, deferred_field_accessed,
// query_mutated_after_fetch or error (any other failure).
//
// # Deterministic Testing
//
// Query ids come from testutil.SequentialIDGenerator and every statement
// orders by primary key, so a scenario always produces the same trace. The
// trace is compared against golden files with goldie (see RunWithGolden).
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/counts.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
