package domain

// ProjectID identifies a collaboration room. Rooms exist implicitly:
// they are created on first join and destroyed on last leave,
// there is no persistent Room record whose lifecycle could desync
// from the membership set.
type ProjectID string
