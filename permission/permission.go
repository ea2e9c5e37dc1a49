// Package permission evaluates role grants and channel overwrites. It is
// deterministic and does no I/O; callers hand it the snapshots a check
// should run against.
package permission

import (
	"sort"

	mapset "github.com/deckarep/golang-set"

	"github.com/ws-gateway/database"
)

// Permission is one entry of the closed permission enumeration.
type Permission string

// The full enumeration. Role and overwrite rows store these as strings.
const (
	Administrator       Permission = "ADMINISTRATOR"
	ManageServer        Permission = "MANAGE_SERVER"
	ManageChannels      Permission = "MANAGE_CHANNELS"
	ManageRoles         Permission = "MANAGE_ROLES"
	ManageMessages      Permission = "MANAGE_MESSAGES"
	CreateInstantInvite Permission = "CREATE_INSTANT_INVITE"
	ViewChannel         Permission = "VIEW_CHANNEL"
	SendMessages        Permission = "SEND_MESSAGES"
	EmbedLinks          Permission = "EMBED_LINKS"
	AttachFiles         Permission = "ATTACH_FILES"
	AddReactions        Permission = "ADD_REACTIONS"
	UseExternalEmojis   Permission = "USE_EXTERNAL_EMOJIS"
	Connect             Permission = "CONNECT"
	Speak               Permission = "SPEAK"
	Video               Permission = "VIDEO"
	MuteMembers         Permission = "MUTE_MEMBERS"
	DeafenMembers       Permission = "DEAFEN_MEMBERS"
	MoveMembers         Permission = "MOVE_MEMBERS"
)

// All lists every known permission.
var All = []Permission{
	Administrator, ManageServer, ManageChannels, ManageRoles, ManageMessages,
	CreateInstantInvite, ViewChannel, SendMessages, EmbedLinks, AttachFiles,
	AddReactions, UseExternalEmojis, Connect, Speak, Video, MuteMembers,
	DeafenMembers, MoveMembers,
}

// EveryoneRole is the default role every member holds.
const EveryoneRole = "@everyone"

// Snapshot is the role/overwrite state one check runs against.
type Snapshot struct {
	OwnerID     string
	MemberRoles []string
	ServerRoles []database.Role
	Overwrites  []database.Overwrite
}

// DefaultRoles returns the role set a new server is seeded with.
func DefaultRoles(serverID string) []database.Role {
	return []database.Role{
		{
			ServerID: serverID,
			Name:     EveryoneRole,
			Color:    "#99AAB5",
			Permissions: strings(
				ViewChannel, SendMessages, EmbedLinks, AttachFiles,
				AddReactions, Connect, Speak,
			),
			Position: 0,
		},
		{
			ServerID:    serverID,
			Name:        "Admin",
			Color:       "#FF0000",
			Permissions: strings(Administrator),
			Position:    1,
		},
	}
}

// Evaluate reports whether userID holds required in the snapshot's channel.
// Owners hold everything. Any assigned role carrying ADMINISTRATOR grants
// everything and ignores deny overwrites.
func Evaluate(userID string, snap Snapshot, required Permission) bool {
	if snap.OwnerID != "" && snap.OwnerID == userID {
		return true
	}
	byName := rolesByName(snap.ServerRoles)
	for _, name := range snap.MemberRoles {
		role, ok := byName[name]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			if Permission(p) == Administrator {
				return true
			}
		}
	}
	return EffectiveSet(snap.MemberRoles, snap.ServerRoles, snap.Overwrites).Contains(required)
}

// EffectiveSet merges role grants, then applies channel overwrites for the
// member's roles in ascending position order. The highest-position role's
// overwrite lands last and wins on conflict; within one overwrite deny is
// applied before allow.
func EffectiveSet(memberRoles []string, serverRoles []database.Role, overwrites []database.Overwrite) mapset.Set {
	set := mapset.NewThreadUnsafeSet()
	byName := rolesByName(serverRoles)

	held := make(map[string]bool, len(memberRoles))
	for _, name := range memberRoles {
		held[name] = true
		role, ok := byName[name]
		if !ok {
			continue
		}
		for _, p := range role.Permissions {
			set.Add(Permission(p))
		}
	}

	applied := make([]database.Overwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		if held[ow.Role] {
			applied = append(applied, ow)
		}
	}
	sort.SliceStable(applied, func(i, j int) bool {
		return byName[applied[i].Role].Position < byName[applied[j].Role].Position
	})
	for _, ow := range applied {
		for _, p := range ow.Deny {
			set.Remove(Permission(p))
		}
		for _, p := range ow.Allow {
			set.Add(Permission(p))
		}
	}
	return set
}

func rolesByName(roles []database.Role) map[string]database.Role {
	byName := make(map[string]database.Role, len(roles))
	for _, role := range roles {
		byName[role.Name] = role
	}
	return byName
}

func strings(perms ...Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
