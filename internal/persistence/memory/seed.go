package memory

import (
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

// SeedDemo populates the store with a small campus directory: three rooms,
// a department, a club, and a society, with the grants a demo deployment
// needs. Event history starts empty.
func SeedDemo(store *Store) {
	now := time.Now().UTC()

	groups := []persistence.Group{
		{ID: "grp-cs", Name: "Computer Science", Code: "CS", Type: persistence.GroupTypeDepartment, CreatedAt: now, UpdatedAt: now},
		{ID: "grp-chess", Name: "Chess Club", Code: "CHESS", Type: persistence.GroupTypeClub, CreatedAt: now, UpdatedAt: now},
		{ID: "grp-debate", Name: "Debate Society", Code: "DEBATE", Type: persistence.GroupTypeSociety, CreatedAt: now, UpdatedAt: now},
	}
	for _, group := range groups {
		store.AddGroup(group)
	}

	users := []persistence.User{
		{ID: "user-smith", DisplayName: "Dr. Smith", Email: "smith@campus.example", DepartmentID: "grp-cs", CreatedAt: now, UpdatedAt: now},
		{ID: "user-johnson", DisplayName: "Prof. Johnson", Email: "johnson@campus.example", DepartmentID: "grp-cs", CreatedAt: now, UpdatedAt: now},
		{ID: "user-davis", DisplayName: "Ms. Davis", Email: "davis@campus.example", DepartmentID: "", CreatedAt: now, UpdatedAt: now},
	}
	for _, user := range users {
		store.AddUser(user)
	}

	store.AddMembership(persistence.Membership{UserID: "user-smith", GroupID: "grp-cs", Role: "staff"})
	store.AddMembership(persistence.Membership{UserID: "user-johnson", GroupID: "grp-cs", Role: "head"})
	store.AddMembership(persistence.Membership{UserID: "user-johnson", GroupID: "grp-debate", Role: "advisor"})
	store.AddMembership(persistence.Membership{UserID: "user-davis", GroupID: "grp-chess", Role: "officer"})

	rooms := []persistence.Room{
		{ID: "room-a101", Name: "Lecture Hall A101", Capacity: 120, Type: "lecture", Equipment: []string{"projector", "audio"}, CreatedAt: now, UpdatedAt: now},
		{ID: "room-b204", Name: "Seminar Room B204", Capacity: 24, Type: "seminar", Equipment: []string{"whiteboard"}, CreatedAt: now, UpdatedAt: now},
		{ID: "room-c7", Name: "Club Room C7", Capacity: 12, Type: "meeting", CreatedAt: now, UpdatedAt: now},
	}
	for _, room := range rooms {
		store.AddRoom(room)
	}

	permissions := []persistence.Permission{
		{GroupID: "grp-cs", RoomID: "room-a101", CanBook: true, CanView: true},
		{GroupID: "grp-cs", RoomID: "room-b204", CanBook: true, CanView: true},
		{GroupID: "grp-chess", RoomID: "room-c7", CanBook: true, CanView: true},
		{GroupID: "grp-debate", RoomID: "room-b204", CanBook: true, CanView: true},
		{GroupID: "grp-debate", RoomID: "room-a101", CanBook: false, CanView: true},
	}
	for _, permission := range permissions {
		store.AddPermission(permission)
	}
}
