package slot

import (
	"errors"
	"testing"
)

var (
	alice = Actor{UserID: "1", Role: RoleUser}
	bob   = Actor{UserID: "2", Role: RoleUser}
	admin = Actor{UserID: "9", Role: RoleAdmin}
	anon  = Actor{}
)

func free() Slot             { return Slot{ID: 1} }
func sensed() Slot           { return Slot{ID: 1, SensorOccupied: true} }
func pending(o string) Slot  { return Slot{ID: 1, State: Pending, Owner: o} }
func occupied(o string) Slot { return Slot{ID: 1, State: Occupied, Owner: o, PaymentMethod: "card"} }

func TestApplyTable(t *testing.T) {
	tests := []struct {
		name    string
		cur     Slot
		cmd     Command
		policy  Policy
		want    Slot
		wantErr error
	}{
		{"reserve free", free(), Command{Action: ActionReserve, Actor: alice}, Policy{}, pending("1"), nil},
		{"reserve anonymous", free(), Command{Action: ActionReserve, Actor: anon}, Policy{}, Slot{}, ErrUnauthorized},
		{"reserve pending", pending("1"), Command{Action: ActionReserve, Actor: bob}, Policy{}, Slot{}, ErrConflict},
		{"reserve occupied", occupied("1"), Command{Action: ActionReserve, Actor: bob}, Policy{}, Slot{}, ErrConflict},
		{"reserve sensor occupied", sensed(), Command{Action: ActionReserve, Actor: alice}, Policy{}, Slot{}, ErrConflict},

		{"pay own", pending("1"), Command{Action: ActionPay, Actor: alice, PaymentMethod: "card"}, Policy{}, occupied("1"), nil},
		{"pay other", pending("1"), Command{Action: ActionPay, Actor: bob, PaymentMethod: "card"}, Policy{}, Slot{}, ErrForbidden},
		{"pay other open policy", pending("1"), Command{Action: ActionPay, Actor: bob, PaymentMethod: "card"}, Policy{OpenPayment: true}, occupied("1"), nil},
		{"pay free", free(), Command{Action: ActionPay, Actor: alice}, Policy{}, Slot{}, ErrConflict},
		{"pay twice", occupied("1"), Command{Action: ActionPay, Actor: alice}, Policy{}, Slot{}, ErrConflict},
		{"pay anonymous", pending("1"), Command{Action: ActionPay, Actor: anon}, Policy{OpenPayment: true}, Slot{}, ErrUnauthorized},

		{"unlock own", occupied("1"), Command{Action: ActionUnlock, Actor: alice}, Policy{}, free(), nil},
		{"unlock other", occupied("1"), Command{Action: ActionUnlock, Actor: bob}, Policy{}, Slot{}, ErrForbidden},
		{"unlock pending", pending("1"), Command{Action: ActionUnlock, Actor: alice}, Policy{}, Slot{}, ErrConflict},
		{"unlock free", free(), Command{Action: ActionUnlock, Actor: alice}, Policy{}, Slot{}, ErrConflict},

		{"release pending", pending("1"), Command{Action: ActionRelease, Actor: admin}, Policy{}, free(), nil},
		{"release occupied", occupied("1"), Command{Action: ActionRelease, Actor: admin}, Policy{}, free(), nil},
		{"release sensed", sensed(), Command{Action: ActionRelease, Actor: admin}, Policy{}, free(), nil},
		{"release free", free(), Command{Action: ActionRelease, Actor: admin}, Policy{}, free(), nil},
		{"release by user", pending("1"), Command{Action: ActionRelease, Actor: alice}, Policy{}, Slot{}, ErrForbidden},

		{"car arrives free", free(), Command{Action: ActionHardware, Actor: Sensor, Occupied: true}, Policy{}, sensed(), nil},
		{"car arrives pending", pending("1"), Command{Action: ActionHardware, Actor: Sensor, Occupied: true}, Policy{}, pending("1"), nil},
		{"car arrives occupied", occupied("1"), Command{Action: ActionHardware, Actor: Sensor, Occupied: true}, Policy{}, occupied("1"), nil},
		{"car leaves occupied", occupied("1"), Command{Action: ActionHardware, Actor: Sensor}, Policy{}, free(), nil},
		{"car leaves pending", pending("1"), Command{Action: ActionHardware, Actor: Sensor}, Policy{}, free(), nil},
		{"car leaves sensed", sensed(), Command{Action: ActionHardware, Actor: Sensor}, Policy{}, free(), nil},
		{"car leaves free", free(), Command{Action: ActionHardware, Actor: Sensor}, Policy{}, free(), nil},
		{"hardware from user", free(), Command{Action: ActionHardware, Actor: admin}, Policy{}, Slot{}, ErrForbidden},

		{"unknown action", free(), Command{Action: "teleport", Actor: admin}, Policy{}, Slot{}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(tt.cur, tt.cmd, tt.policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if got != tt.cur {
					t.Errorf("failed transition changed state: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.sameState(tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecordDerivation(t *testing.T) {
	tests := []struct {
		name                      string
		s                         Slot
		available, reserved, paid bool
		gate, light               string
		owner                     bool
	}{
		{"free", free(), true, false, false, GateOpen, LightGreen, false},
		{"sensor occupied", sensed(), false, false, false, GateOpen, LightRed, false},
		{"pending", pending("1"), false, true, false, GateClosed, LightYellow, true},
		{"occupied", occupied("1"), false, true, true, GateClosed, LightRed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.s.Record()
			if r.IsAvailable != tt.available || r.IsReserved != tt.reserved || r.IsPaid != tt.paid {
				t.Errorf("flags = %v/%v/%v", r.IsAvailable, r.IsReserved, r.IsPaid)
			}
			if r.GateStatus != tt.gate || r.LightStatus != tt.light {
				t.Errorf("gate/light = %s/%s", r.GateStatus, r.LightStatus)
			}
			if (r.ReservedBy != nil) != tt.owner {
				t.Errorf("reserved_by = %v", r.ReservedBy)
			}
			back, err := FromRecord(r)
			if err != nil {
				t.Fatalf("FromRecord: %v", err)
			}
			if !back.sameState(tt.s) {
				t.Errorf("FromRecord(Record()) = %+v, want %+v", back, tt.s)
			}
		})
	}
}

func TestFromRecordRejectsInvalidCombinations(t *testing.T) {
	owner := "1"
	tests := []struct {
		name string
		r    Record
	}{
		{"available and reserved", Record{SlotID: 1, IsAvailable: true, IsReserved: true, ReservedBy: &owner}},
		{"available and paid", Record{SlotID: 1, IsAvailable: true, IsPaid: true}},
		{"available with owner", Record{SlotID: 1, IsAvailable: true, ReservedBy: &owner}},
		{"paid not reserved", Record{SlotID: 1, IsPaid: true, ReservedBy: &owner}},
		{"paid without owner", Record{SlotID: 1, IsReserved: true, IsPaid: true}},
		{"reserved without owner", Record{SlotID: 1, IsReserved: true}},
		{"unclaimed with owner", Record{SlotID: 1, ReservedBy: &owner}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromRecord(tt.r); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

// Every state reachable from Free through any sequence of commands keeps the
// record invariants.
func TestInvariantsOverReachableStates(t *testing.T) {
	cmds := []Command{
		{Action: ActionReserve, Actor: alice},
		{Action: ActionReserve, Actor: bob},
		{Action: ActionPay, Actor: alice, PaymentMethod: "card"},
		{Action: ActionPay, Actor: bob, PaymentMethod: "cash"},
		{Action: ActionUnlock, Actor: alice},
		{Action: ActionUnlock, Actor: bob},
		{Action: ActionRelease, Actor: admin},
		{Action: ActionHardware, Actor: Sensor, Occupied: true},
		{Action: ActionHardware, Actor: Sensor, Occupied: false},
	}
	for _, p := range []Policy{{}, {OpenPayment: true}} {
		seen := map[Slot]bool{free(): true}
		queue := []Slot{free()}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			checkInvariants(t, cur)
			for _, c := range cmds {
				next, err := Apply(cur, c, p)
				if err != nil || seen[next] {
					continue
				}
				seen[next] = true
				queue = append(queue, next)
			}
		}
		if len(seen) < 6 {
			t.Errorf("explored only %d states", len(seen))
		}
	}
}

func checkInvariants(t *testing.T, s Slot) {
	t.Helper()
	r := s.Record()
	if r.IsPaid && !r.IsReserved {
		t.Errorf("%+v: paid but not reserved", s)
	}
	if r.IsAvailable && (r.IsReserved || r.IsPaid || r.ReservedBy != nil) {
		t.Errorf("%+v: available but claimed", s)
	}
	if r.ReservedBy == nil && (r.IsReserved || r.IsPaid) {
		t.Errorf("%+v: claim without owner", s)
	}
	if s.SensorOccupied && s.State != Free {
		t.Errorf("%+v: sensor flag outside Free", s)
	}
}
