package queue

// AuctionEventsQueue is the durable queue every engine state-change
// event is published to.  Downstream consumers render announcements,
// notify outbid members or feed the audit log without querying the
// engine.
const AuctionEventsQueue = "auction.events"

// Event type values.  One flat Event struct is used for all of them;
// unused fields are omitted from the JSON encoding.
const (
    EventLotPreview  = "lot.preview"
    EventLotActive   = "lot.active"
    EventGoingOnce   = "lot.going_once"
    EventGoingTwice  = "lot.going_twice"
    EventFinalCall   = "lot.final_call"
    EventLotExtended = "lot.extended"
    EventLotSold     = "lot.sold"
    EventLotNoBids   = "lot.no_bids"

    EventBidPending   = "bid.pending"
    EventBidConfirmed = "bid.confirmed"
    EventBidOutbid    = "bid.outbid"
    EventBidRaceLost  = "bid.race_lost"
    EventBidExpired   = "bid.expired"

    EventSessionStarted   = "session.started"
    EventSessionPaused    = "session.paused"
    EventSessionResumed   = "session.resumed"
    EventSessionFinalized = "session.finalized"
    EventSubmitFailed     = "session.submit_failed"
)

// Winner is one winning bid reported in a lot.sold event.  Batch lots
// carry several winners, each at their own bid amount.
type Winner struct {
    Member string `json:"member"`
    Amount int64  `json:"amount"`
}

// Event is published for every observable state change in the engine.
// The Type field selects which of the optional fields are meaningful.
type Event struct {
    Type     string `json:"type"`
    LotID    string `json:"lot_id,omitempty"`
    Item     string `json:"item,omitempty"`
    Quantity int    `json:"quantity,omitempty"`

    Member string `json:"member,omitempty"`
    Amount int64  `json:"amount,omitempty"`
    Handle string `json:"handle,omitempty"`

    HighBid  int64  `json:"high_bid,omitempty"`
    Leader   string `json:"leader,omitempty"`
    TimeLeft int64  `json:"time_left_secs,omitempty"`
    ExtCount int    `json:"ext_count,omitempty"`

    Winners   []Winner `json:"winners,omitempty"`
    QueueLeft int      `json:"queue_left,omitempty"`

    SessionTimestamp string `json:"session_timestamp,omitempty"`
    At               string `json:"at"`
}
