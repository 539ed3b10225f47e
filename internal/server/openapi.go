package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses. Message is the text to
// show the person when the error came from a game command.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Path parameters, documented alongside the request body they accompany.
type gamePath struct {
	GameID string `path:"gameID"`
}

type personPath struct {
	PersonID string `path:"personID"`
}

type gameCommand struct {
	GameID   string `path:"gameID"`
	PersonID string `json:"personId" required:"true"`
}

type locationUpdate struct {
	PersonID  string  `path:"personID"`
	Latitude  float64 `json:"latitude" required:"true"`
	Longitude float64 `json:"longitude" required:"true"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
}

var operations = []operation{
	{
		method: http.MethodGet, path: "/api/help",
		summary: "Rules", description: "Returns the rules of the game.",
		resp: HelpResponse{}, status: http.StatusOK,
	},
	{
		method: http.MethodPost, path: "/api/start",
		summary: "Open a deep link", description: "Greets the person, or joins the game named by a join_<gameId> payload.",
		req: StartRequest{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/onboarding",
		summary: "Start creating a game", description: "Begins the create-game dialogue and returns the first question.",
		req: PersonRequest{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/onboarding/input",
		summary: "Answer an onboarding question", description: "Rejected input is answered with accepted=false and the same question. The last answer creates the game (201).",
		req: InputRequest{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusCreated, http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodDelete, path: "/api/onboarding/{personID}",
		summary: "Abandon game creation",
		req: personPath{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/games/{gameID}",
		summary: "Get game",
		req: gamePath{}, resp: GameResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodGet, path: "/api/games/{gameID}/broadcasts",
		summary: "List location broadcasts", description: "Sponsor positions sent to the hunters, one per round.",
		req: gamePath{}, resp: []BroadcastResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
	{
		method: http.MethodPost, path: "/api/games/{gameID}/join",
		summary: "Join as a hunter",
		req: gameCommand{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/games/{gameID}/leave",
		summary: "Leave a game",
		req: gameCommand{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodPost, path: "/api/games/{gameID}/cancel",
		summary: "Cancel a game", description: "Sponsor only. Ends the game with the cancelled result.",
		req: gameCommand{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodPost, path: "/api/caught",
		summary: "Report capture", description: "The sponsor of a running game reports being caught; the hunters win.",
		req: PersonRequest{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	},
	{
		method: http.MethodPut, path: "/api/people/{personID}/location",
		summary: "Share location", description: "Stores the latest position of the person.",
		req: locationUpdate{}, resp: ReplyResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest},
	},
	{
		method: http.MethodGet, path: "/api/people/{personID}/game",
		summary: "Active game", description: "The created or running game the person takes part in, with their role.",
		req: personPath{}, resp: ActiveGameResponse{}, status: http.StatusOK,
		errors: []int{http.StatusNotFound},
	},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Manhunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Commands and notification streams for the manhunt game.")

	for _, op := range operations {
		oc, _ := r.NewOperationContext(op.method, op.path)
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		for _, status := range op.errors {
			if status == http.StatusCreated {
				oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(status))
				continue
			}
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	// GET /api/people/{personID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/people/{personID}/events")
	getEvents.SetSummary("SSE notification stream")
	getEvents.SetDescription("Server-Sent Events stream of the person's notifications.")
	getEvents.AddReqStructure(personPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/people/{personID}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/people/{personID}/ws")
	getWS.SetSummary("WebSocket notification stream")
	getWS.SetDescription("Upgrades to a WebSocket that carries the person's notifications as JSON text messages.")
	getWS.AddReqStructure(personPath{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
