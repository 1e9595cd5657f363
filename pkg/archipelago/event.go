package archipelago

// Entity names the kind of object an Event refers to.
type Entity string

const (
	EntityBoard     Entity = "board"
	EntityPlayer    Entity = "player"
	EntityIsland    Entity = "island"
	EntityCloud     Entity = "cloud"
	EntityCharacter Entity = "character"
	EntityTurn      Entity = "turn"
	EntityGame      Entity = "game"
)

// Event fields.
const (
	FieldEntrance    = "entrance"
	FieldDining      = "dining"
	FieldProfessors  = "professors"
	FieldCoins       = "coins"
	FieldHand        = "hand"
	FieldLastPlayed  = "last_played"
	FieldStudents    = "students"
	FieldOwner       = "owner"
	FieldNoEntry     = "no_entry"
	FieldMergedInto  = "merged_into"
	FieldSize        = "size"
	FieldMarker      = "marker"
	FieldPrice       = "price"
	FieldUsed        = "used"
	FieldOrder       = "order"
	FieldCurrent     = "current"
	FieldPhase       = "phase"
	FieldStep        = "step"
	FieldRound       = "round"
	FieldDrawRule    = "draw_rule"
	FieldTowers      = "towers"
	FieldTreasury    = "treasury"
	FieldFinalRound  = "final_round"
	FieldWinner      = "winner"
	FieldEffectState = "state"
)

// Event is one field change produced by a mutating call. ID is the player id
// for boards and players, the group id for islands and the index for clouds
// and characters.
type Event struct {
	Entity Entity `json:"entity"`
	ID     string `json:"id"`
	Field  string `json:"field"`
	Value  any    `json:"value"`
}

// recorder collects the events of the call in progress.
type recorder struct {
	events []Event
}

func (r *recorder) emit(entity Entity, id, field string, value any) {
	r.events = append(r.events, Event{Entity: entity, ID: id, Field: field, Value: value})
}

// drain returns the collected events and resets the recorder.
func (r *recorder) drain() []Event {
	out := r.events
	r.events = nil
	return out
}
