package gtfsmerge

// NOTE: Skipped merging
//   - translations, pathways, levels and the fare v2 tables; none of the
//     source feeds we merge publish them

// Entity kinds, named after the GTFS file they serialize to.
const (
	KindAgency         = "agency"
	KindStops          = "stops"
	KindRoutes         = "routes"
	KindTrips          = "trips"
	KindCalendar       = "calendar"
	KindCalendarDates  = "calendar_dates"
	KindStopTimes      = "stop_times"
	KindShapes         = "shapes"
	KindFareAttributes = "fare_attributes"
	KindFareRules      = "fare_rules"
	KindFeedInfo       = "feed_info"
)

// Identifier spaces. A foreign key resolves against a space, not a
// kind: calendar and calendar_dates both declare service ids, so a
// trip's service_id is valid if either table declares it.
const (
	spaceAgency  = "agency"
	spaceStop    = "stop"
	spaceRoute   = "route"
	spaceTrip    = "trip"
	spaceService = "service"
	spaceShape   = "shape"
	spaceFare    = "fare"
)

type mergePolicy int

const (
	// mergeNever: identity is feed-local, records are always namespaced
	// as distinct entities.
	mergeNever mergePolicy = iota
	// mergeByCorrespondence: merged when the configured correspondence
	// table links them, or on exact stop_code match when enabled.
	mergeByCorrespondence
	// mergeByAlias: merged only via the configured alias table.
	mergeByAlias
	// mergeSingleton: one row survives per output, taken from the most
	// preferred feed that has one.
	mergeSingleton
)

type kindSchema struct {
	// PrimaryKey columns, joined with "," for composite keys.
	PrimaryKey []string
	// IDField is the column whose values this kind declares into
	// IDSpace. Empty for kinds that declare no identifiers.
	IDField string
	IDSpace string
	// ForeignKeys maps a column to the space its values must resolve
	// in. Empty values are not references.
	ForeignKeys map[string]string
	Merge       mergePolicy
	// Parent names the column linking a child record to its parent.
	// Audited in both directions: a stop_time without its trip is an
	// orphan child, a trip with zero stop_times an orphan parent.
	Parent string
	// Columns is the canonical output column order.
	Columns []string
}

// kindOrder fixes iteration order over kinds for deterministic output.
var kindOrder = []string{
	KindAgency,
	KindStops,
	KindRoutes,
	KindTrips,
	KindCalendar,
	KindCalendarDates,
	KindStopTimes,
	KindShapes,
	KindFareAttributes,
	KindFareRules,
	KindFeedInfo,
}

var mergeSchema = map[string]kindSchema{
	KindAgency: {
		PrimaryKey: []string{"agency_id"},
		IDField:    "agency_id",
		IDSpace:    spaceAgency,
		Merge:      mergeByAlias,
		Columns: []string{
			"agency_id", "agency_name", "agency_url", "agency_timezone",
			"agency_phone", "agency_lang", "agency_fare_url", "agency_email",
		},
	},

	KindStops: {
		PrimaryKey:  []string{"stop_id"},
		IDField:     "stop_id",
		IDSpace:     spaceStop,
		ForeignKeys: map[string]string{"parent_station": spaceStop},
		Merge:       mergeByCorrespondence,
		Columns: []string{
			"stop_id", "stop_code", "stop_name", "stop_lat", "stop_lon",
			"location_type", "parent_station",
		},
	},

	KindRoutes: {
		PrimaryKey:  []string{"route_id"},
		IDField:     "route_id",
		IDSpace:     spaceRoute,
		ForeignKeys: map[string]string{"agency_id": spaceAgency},
		Merge:       mergeNever,
		Columns: []string{
			"route_id", "agency_id", "route_short_name", "route_long_name",
			"route_type", "route_color", "route_text_color",
		},
	},

	KindTrips: {
		PrimaryKey: []string{"trip_id"},
		IDField:    "trip_id",
		IDSpace:    spaceTrip,
		ForeignKeys: map[string]string{
			"route_id":   spaceRoute,
			"service_id": spaceService,
			"shape_id":   spaceShape,
		},
		Merge: mergeNever,
		Columns: []string{
			"route_id", "service_id", "trip_id", "trip_headsign",
			"trip_short_name", "direction_id", "shape_id",
			"wheelchair_accessible", "block_id",
		},
	},

	KindCalendar: {
		PrimaryKey: []string{"service_id"},
		IDField:    "service_id",
		IDSpace:    spaceService,
		Merge:      mergeNever,
		Columns: []string{
			"service_id", "monday", "tuesday", "wednesday", "thursday",
			"friday", "saturday", "sunday", "start_date", "end_date",
		},
	},

	KindCalendarDates: {
		PrimaryKey: []string{"service_id", "date"},
		IDField:    "service_id",
		IDSpace:    spaceService,
		Merge:      mergeNever,
		Columns:    []string{"service_id", "date", "exception_type"},
	},

	KindStopTimes: {
		PrimaryKey: []string{"trip_id", "stop_sequence"},
		ForeignKeys: map[string]string{
			"trip_id": spaceTrip,
			"stop_id": spaceStop,
		},
		Merge:  mergeNever,
		Parent: "trip_id",
		Columns: []string{
			"trip_id", "arrival_time", "departure_time", "stop_id",
			"stop_sequence", "stop_headsign", "pickup_type",
			"drop_off_type", "timepoint",
		},
	},

	KindShapes: {
		PrimaryKey: []string{"shape_id", "shape_pt_sequence"},
		IDField:    "shape_id",
		IDSpace:    spaceShape,
		Merge:      mergeNever,
		Columns: []string{
			"shape_id", "shape_pt_lat", "shape_pt_lon", "shape_pt_sequence",
		},
	},

	KindFareAttributes: {
		PrimaryKey:  []string{"fare_id"},
		IDField:     "fare_id",
		IDSpace:     spaceFare,
		ForeignKeys: map[string]string{"agency_id": spaceAgency},
		Merge:       mergeNever,
		Columns: []string{
			"fare_id", "price", "currency_type", "payment_method",
			"transfers", "agency_id", "transfer_duration",
		},
	},

	KindFareRules: {
		PrimaryKey: []string{"fare_id", "route_id", "origin_id", "destination_id", "contains_id"},
		ForeignKeys: map[string]string{
			"fare_id":  spaceFare,
			"route_id": spaceRoute,
		},
		Merge: mergeNever,
		Columns: []string{
			"fare_id", "route_id", "origin_id", "destination_id", "contains_id",
		},
	},

	KindFeedInfo: {
		PrimaryKey: nil,
		Merge:      mergeSingleton,
		Columns: []string{
			"feed_publisher_name", "feed_publisher_url", "feed_lang",
			"feed_start_date", "feed_end_date", "feed_contact_email",
			"feed_version",
		},
	},
}

// allSpaces in a fixed order, for mismatch probing.
var allSpaces = []string{
	spaceAgency, spaceStop, spaceRoute, spaceTrip,
	spaceService, spaceShape, spaceFare,
}
