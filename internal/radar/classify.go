package radar

import "strings"

// categoryKeywords drives the fallback classifier used when the model does
// not return a recognized category. Matching is substring-based over the
// lowercased product name, first hit wins in this order.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryPasswordManager, []string{"password", "keepass", "1password", "lastpass", "dashlane", "bitwarden"}},
	{CategoryCompressionUtility, []string{"zip", "7-zip", "winrar", "peazip", "bandizip"}},
	{CategoryFileSharing, []string{"filezilla", "ftp", "dropbox", "wetransfer", "sharefile"}},
	{CategoryGenAITool, []string{"chatgpt", "copilot", "claude", "gemini", "midjourney"}},
	{CategoryRemoteAccess, []string{"teamviewer", "anydesk", "vnc", "rdp", "remote desktop"}},
	{CategoryCommunication, []string{"slack", "teams", "zoom", "discord", "telegram", "signal"}},
	{CategoryBrowser, []string{"chrome", "firefox", "edge", "brave", "opera", "safari"}},
	{CategoryMediaPlayer, []string{"vlc", "spotify", "winamp", "media player"}},
	{CategoryVirtualization, []string{"vmware", "virtualbox", "hyper-v", "qemu", "vagrant"}},
	{CategoryDevelopmentTool, []string{"visual studio", "intellij", "eclipse", "git", "docker", "node"}},
	{CategorySecurityTool, []string{"antivirus", "defender", "wireshark", "nmap", "nessus", "malwarebytes"}},
	{CategoryBackupStorage, []string{"backup", "acronis", "veeam", "rclone", "syncthing"}},
	{CategoryOfficeSuite, []string{"office", "libreoffice", "openoffice", "notion"}},
	{CategorySaaSCRM, []string{"salesforce", "hubspot", "crm", "pipedrive"}},
	{CategoryGaming, []string{"steam", "epic games", "battle.net", "origin"}},
}

// ClassifyProduct assigns a taxonomy category from the product name alone.
// Unknown products land in Other.
func ClassifyProduct(productName string) Category {
	name := strings.ToLower(productName)
	for _, kc := range categoryKeywords {
		for _, w := range kc.words {
			if strings.Contains(name, w) {
				return kc.category
			}
		}
	}
	return CategoryOther
}

// knownCategories is used to validate model output.
var knownCategories = map[Category]bool{
	CategoryFileSharing: true, CategoryGenAITool: true, CategorySaaSCRM: true,
	CategoryEndpointAgent: true, CategoryPasswordManager: true,
	CategoryCompressionUtility: true, CategoryRemoteAccess: true,
	CategoryDevelopmentTool: true, CategoryCommunication: true,
	CategorySecurityTool: true, CategoryMediaPlayer: true,
	CategoryVirtualization: true, CategoryOfficeSuite: true,
	CategoryGaming: true, CategoryBackupStorage: true, CategoryBrowser: true,
	CategoryOther: true,
}
